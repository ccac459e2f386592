// Package logs reads the blindtest log file for the `logs` command.
//
// Tail returns the last N matching lines and the offset to continue from;
// Follow polls from that offset until its context ends. Both scan with a
// bounded buffer, so large log files never load into memory at once.
package logs
