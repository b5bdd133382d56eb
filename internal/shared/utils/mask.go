package utils

// MaskSecret masks a credential for safe logging, keeping only a short
// prefix. Example: "sk_live_abc123..." -> "sk_l***"
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:4] + "***"
}
