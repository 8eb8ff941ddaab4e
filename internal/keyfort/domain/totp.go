package domain

// TOTPEnrollResponse is returned when a TOTP enrollment begins. The raw
// secret stays server-side; clients only ever see the provisioning image.
type TOTPEnrollResponse struct {
	Image   string // PNG data URI of the provisioning QR code
	Issuer  string // Issuer name embedded in the otpauth:// URI
	Account string // Account label embedded in the otpauth:// URI
}
