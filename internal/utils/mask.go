package utils

// MaskSecret keeps the first characters of s, enough to tell two secrets apart in logs.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "*****"
	}
	return s[:2] + "*****"
}
