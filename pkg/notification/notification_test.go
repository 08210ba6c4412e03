package notification

import "testing"

func TestRender(t *testing.T) {
	title, body, err := Render("payment_confirmed", map[string]string{"amount": "15000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title == "" {
		t.Fatal("expected non-empty title")
	}
	want := "15000원 결제가 완료되었습니다."
	if body != want {
		t.Fatalf("body = %q, want %q", body, want)
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	if _, _, err := Render("does_not_exist", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestSendStatus_Retryable(t *testing.T) {
	cases := map[SendStatus]bool{
		SendOK:            false,
		SendInvalidToken:  false,
		SendPermanentFail: false,
		SendRateLimited:   true,
		SendTimeout:       true,
		SendServerError:   true,
	}
	for status, want := range cases {
		if got := status.Retryable(); got != want {
			t.Errorf("%s.Retryable() = %v, want %v", status, got, want)
		}
	}
}
