//go:build race

package sessionstore

import "golang.org/x/crypto/bcrypt"

// race builds are slow enough that the full cost trips test timeouts
func passwordHashCost() int {
	return bcrypt.MinCost
}
