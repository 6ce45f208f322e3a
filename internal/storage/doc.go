// Package storage provides a minimal persistence layer for campaign runs.
//
// It currently supports:
//   - Dispatch result appends (one entry per contact outcome)
//   - The reply monitor's handled-message set (to survive restarts)
package storage
