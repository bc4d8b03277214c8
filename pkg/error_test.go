package pkg

import (
	"errors"
	"testing"
)

func TestDetailMatchesClass(t *testing.T) {
	tests := []struct {
		err   error
		class error
	}{
		{ErrResetTimeout, ErrInitialization},
		{ErrEchoMismatch, ErrInitialization},
		{ErrNegotiationTimeout, ErrInitialization},
		{ErrOCRRead, ErrInitialization},
		{ErrUnsupportedCSD, ErrInitialization},
		{ErrCommandRejected, ErrTransfer},
		{ErrTokenTimeout, ErrTransfer},
		{ErrBadToken, ErrTransfer},
		{ErrDataRejected, ErrTransfer},
		{ErrBusyTimeout, ErrTransfer},
		{ErrBufferTooSmall, ErrParameter},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if !errors.Is(tt.err, tt.class) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.class)
			}
			if errors.Is(tt.class, tt.err) {
				t.Errorf("class %v matches its detail %v", tt.class, tt.err)
			}
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	// Verify all classes are distinct
	errs := []error{
		ErrParameter,
		ErrNotReady,
		ErrWriteProtected,
		ErrTransfer,
		ErrInitialization,
		ErrNotSupported,
	}

	for i, err1 := range errs {
		if err1 == nil {
			t.Errorf("error %d is nil", i)
			continue
		}
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("error %d and %d are equal", i, j)
			}
		}
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(ErrTokenTimeout, "sector %d", 7)
	if got, want := err.Error(), "start token timeout: sector 7"; got != want {
		t.Errorf("Errorf() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrTokenTimeout) || !errors.Is(err, ErrTransfer) {
		t.Errorf("Errorf() result does not match its sentinel and class: %v", err)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err     error
		wantMsg string
	}{
		{ErrParameter, "invalid parameter"},
		{ErrNotReady, "card not ready"},
		{ErrWriteProtected, "write protected"},
		{ErrResetTimeout, "reset timeout"},
		{ErrDataRejected, "data rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("error.Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}
