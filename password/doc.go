// Package password hashes and verifies credentials with Argon2id, encoded in
// the standard PHC string format so cost parameters travel with the hash and
// older hashes keep verifying after a parameter bump.
package password
