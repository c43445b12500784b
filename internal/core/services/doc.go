// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The indexing pipeline lives in DocumentProcessor, retrieval in SearchService
// and answer orchestration in QueryService. Services are pure Go with no CGO.
package services
