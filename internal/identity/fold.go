package identity

import "golang.org/x/text/cases"

// Fold returns the comparison key for a user name, group name or tag key.
// IAM treats these as unique regardless of case, so two names with the same
// Fold refer to the same entity.
func Fold(name string) string {
	return cases.Fold().String(name)
}

// SameName reports whether a and b name the same IAM entity.
func SameName(a, b string) bool {
	return Fold(a) == Fold(b)
}
