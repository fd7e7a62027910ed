package identity

import (
    "errors"
    "time"
)

var (
    // ErrAccountExists is returned when registering a handle that is taken.
    ErrAccountExists = errors.New("account already exists")
    // ErrAccountNotFound is returned when no account matches the lookup.
    ErrAccountNotFound = errors.New("account not found")
    // ErrInvalidCredentials hides whether the handle or the PIN was wrong.
    ErrInvalidCredentials = errors.New("invalid credentials")
    // ErrWeakPIN rejects PINs shorter than minPINLength.
    ErrWeakPIN = errors.New("PIN must be at least 4 characters")
    // ErrInvalidHandle rejects empty or oversized handles.
    ErrInvalidHandle = errors.New("handle must be 1-64 characters")
)

// Account is a registered token holder. ID doubles as the ledger account.
type Account struct {
    ID           string
    Handle       string
    PINHash      []byte
    TokenVersion int
    CreatedAt    time.Time
    LastLogin    *time.Time
}

// Credentials request structure.
type Credentials struct {
    Handle string
    PIN    string
}
