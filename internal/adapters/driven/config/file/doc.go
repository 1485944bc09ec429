// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML settings file with dotted-key access
//   - PromptStore: editable prompt templates with embedded defaults
//   - PromptWatcher: reloads the PromptStore when template files change
package file
