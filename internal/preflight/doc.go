// Package preflight provides readiness checks for the filesystem paths and
// media tools blindtest depends on.
//
// These checks run in two contexts:
//   - The export command and the HTTP bridge call CheckOutput before starting
//     the encoder, so a doomed export fails before any frame is produced.
//   - The CLI "blindtest doctor" command uses RunAll and CheckSystemDeps to
//     display overall health.
package preflight
