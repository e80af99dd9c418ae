// Package app wires the engine's components — lexer, parser, graph
// builder, task registry, executor pool, and scheduler — into one
// runnable unit, decoupled from any specific entrypoint like a CLI.
package app
