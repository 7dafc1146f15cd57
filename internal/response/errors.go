package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrScopeMissing       ErrCode = "SCOPE_MISSING"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation       ErrCode = "VALIDATION_ERROR"
	ErrInvalidID        ErrCode = "INVALID_ID"
	ErrInvalidPayload   ErrCode = "INVALID_PAYLOAD"
	ErrInvalidEventType ErrCode = "INVALID_EVENT_TYPE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam attempt ──────────────────────────────────────────────────
	ErrNotEnrolled       ErrCode = "NOT_ENROLLED"
	ErrOutsideWindow     ErrCode = "OUTSIDE_WINDOW"
	ErrAlreadyAttempted  ErrCode = "ALREADY_ATTEMPTED"
	ErrNotInProgress     ErrCode = "NOT_IN_PROGRESS"
	ErrAlreadyFinalized  ErrCode = "ALREADY_FINALIZED"
	ErrAlreadyGraded     ErrCode = "ALREADY_GRADED"
	ErrNotSubmitted      ErrCode = "NOT_SUBMITTED"
	ErrNotGraded         ErrCode = "NOT_GRADED"
	ErrLateEvent         ErrCode = "LATE_EVENT"
	ErrAlreadyReviewed   ErrCode = "ALREADY_REVIEWED"
	ErrInvalidTransition ErrCode = "INVALID_TRANSITION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email atau kata sandi salah."
	case ErrSessionActive:
		return "Sesi aktif sudah ada di perangkat lain. Hubungi admin untuk mengatur ulang."
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."
	case ErrScopeMissing:
		return "Institusi untuk akun ini tidak dapat ditentukan."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Izin ditolak."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidEventType:
		return "Jenis kejadian pengawasan tidak dikenal."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Exam attempt ──────────────────────────────────────────────────
	case ErrNotEnrolled:
		return "Anda tidak terdaftar aktif pada kelompok untuk ujian ini."
	case ErrOutsideWindow:
		return "Ujian ini berada di luar jadwal pelaksanaan."
	case ErrAlreadyAttempted:
		return "Anda sudah mengerjakan ujian ini."
	case ErrNotInProgress:
		return "Pengerjaan ujian tidak sedang berlangsung."
	case ErrAlreadyFinalized:
		return "Jawaban ujian sudah dikumpulkan."
	case ErrAlreadyGraded:
		return "Pengerjaan ini sudah dinilai."
	case ErrNotSubmitted:
		return "Pengerjaan ini belum dikumpulkan."
	case ErrNotGraded:
		return "Pengerjaan ini belum dinilai."
	case ErrLateEvent:
		return "Kejadian dicatat terlambat karena pengerjaan sudah selesai."
	case ErrAlreadyReviewed:
		return "Kejadian ini sudah ditinjau."
	case ErrInvalidTransition:
		return "Perubahan status tidak diperbolehkan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
