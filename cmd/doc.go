// Package cmd implements the command-line interface for calbridge.
//
// This package provides the following commands:
//   - link: Link a Google account by storing its OAuth credential
//   - calendars: List the calendars visible to a linked account
//   - events: List, create, update, and delete calendar events
//   - version: Display version information
package cmd
