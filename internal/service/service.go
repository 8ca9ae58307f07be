// Package service contains the business logic.
//
// It sits between the handler and repository layers: handlers hand it
// validated input, it composes repository futures with the side effects a
// committed write needs (cache eviction, lifecycle events) and hands a
// future back.
package service
