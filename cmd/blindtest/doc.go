// Package main hosts the blindtest CLI entrypoint and command graph.
//
// The Cobra-based command tree exports blind test projects to video, packs
// and unpacks project archives, inspects projects and export history, runs
// the HTTP progress bridge and scaffolds configuration. It centralizes
// configuration resolution and structured logging setup so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
