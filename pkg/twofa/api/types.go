package api

// CodeRequest carries either a one-time code or a backup code.
type CodeRequest struct {
	Code       string `json:"code"`
	BackupCode string `json:"backup_code"`
}

type VerifySetupResponse struct {
	Message     string   `json:"message"`
	BackupCodes []string `json:"backup_codes"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type BackupCodesResponse struct {
	Codes []string `json:"codes"`
}
