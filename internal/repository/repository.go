// Package repository handles all interactions with the database.
//
// Every operation is one unit of work submitted to the transactor, so
// queries here are written against a single pgx.Tx and never manage
// sessions or transactions themselves.
package repository
