package apierr

import "testing"

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "with param",
			err:  NewInvalidRequestError("language", "unknown language"),
			want: "invalid_request: unknown language (param: language)",
		},
		{
			name: "without param",
			err:  NewServerError("container runtime unavailable"),
			want: "server_error: container runtime unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorType_StatusCode(t *testing.T) {
	tests := []struct {
		typ  ErrorType
		want int
	}{
		{ErrorTypeInvalidRequest, 400},
		{ErrorTypeNotFound, 404},
		{ErrorTypeServerError, 500},
		{ErrorType("unknown"), 500},
	}

	for _, tt := range tests {
		if got := tt.typ.StatusCode(); got != tt.want {
			t.Errorf("StatusCode(%q) = %d, want %d", tt.typ, got, tt.want)
		}
	}
}
