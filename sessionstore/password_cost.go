//go:build !race

package sessionstore

func passwordHashCost() int {
	return DefaultPasswordCost
}
