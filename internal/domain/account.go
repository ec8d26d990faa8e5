package domain

// Account is a chain address participating in the protocol.
// Created on first reference and never mutated afterwards.
type Account struct {
	ID string // lowercase hex address
}
