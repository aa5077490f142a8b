package utils

// Value dereferences v, returning the zero value for nil
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// NonEmpty returns nil for "" so optional token fields stay absent in replies
// that omit them.
func NonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
