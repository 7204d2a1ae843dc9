// Package main hosts the bgjob CLI entrypoint and command graph.
//
// The Cobra command tree enqueues jobs, inspects and repairs individual jobs,
// reports queue contents and database health, runs a polling worker, and
// scaffolds configuration. Configuration, store access, and logger setup are
// resolved once per invocation in commandContext so subcommands only deal with
// presentation.
//
// New behavior belongs in the internal packages first; commands here should
// stay thin wrappers around them.
package main
