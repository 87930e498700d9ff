// Package profile caches chat users' profiles in the shape the assistant
// expects under user_defined.userContext: name.first, name.last, email and
// timezone.
package profile
