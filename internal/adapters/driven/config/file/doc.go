// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage with environment overrides
//   - PromptStore: user-editable answer prompts with embedded defaults
package file
