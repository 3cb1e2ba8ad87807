package utils

func Ptr[T any](v T) *T {
	return &v
}

// Deref returns fallback when p is nil.
func Deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
