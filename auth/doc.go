// Package auth registers identities, verifies their passwords and issues the
// signed tokens that bind a realtime connection to an identity.
//
// Passwords are stored as bcrypt hashes. Tokens are HS256 JWTs whose subject
// is the identity id; they carry the display name and expire after a
// configurable TTL.
package auth
