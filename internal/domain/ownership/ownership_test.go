package ownership

import "testing"

func strPtr(s string) *string { return &s }

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		caller      *Caller
		ownerUser   *string
		ownerExt    *string
		wantAllowed bool
		wantReason  Reason
	}{
		{
			name:        "админ всегда ALLOW, даже при чужом владельце",
			caller:      &Caller{UserID: "u1", IsAdmin: true},
			ownerUser:   strPtr("u2"),
			wantAllowed: true,
			wantReason:  ReasonAdmin,
		},
		{
			name:        "анонимный запрос — пермиссивный ALLOW при заполненном владельце",
			caller:      nil,
			ownerUser:   strPtr("u2"),
			wantAllowed: true,
			wantReason:  ReasonNoCallerIdentity,
		},
		{
			name:        "сессия без идентификаторов — пермиссивный ALLOW",
			caller:      &Caller{},
			ownerUser:   strPtr("u2"),
			wantAllowed: true,
			wantReason:  ReasonCallerWithoutIDs,
		},
		{
			name:        "запись без владельца — ALLOW для любого вызывающего",
			caller:      &Caller{UserID: "u1"},
			wantAllowed: true,
			wantReason:  ReasonRecordWithoutOwner,
		},
		{
			name:        "запись с пустыми строками владельца — как без владельца",
			caller:      &Caller{UserID: "u1"},
			ownerUser:   strPtr(""),
			ownerExt:    strPtr(""),
			wantAllowed: true,
			wantReason:  ReasonRecordWithoutOwner,
		},
		{
			name:        "совпадение userId",
			caller:      &Caller{UserID: "u1"},
			ownerUser:   strPtr("u1"),
			wantAllowed: true,
			wantReason:  ReasonMatched,
		},
		{
			name:        "совпадение externalId при несовпадающем userId",
			caller:      &Caller{UserID: "u1", ExternalID: "tg-42"},
			ownerUser:   strPtr("u2"),
			ownerExt:    strPtr("tg-42"),
			wantAllowed: true,
			wantReason:  ReasonMatched,
		},
		{
			name:        "оба заполнены, оба не совпадают — DENY",
			caller:      &Caller{UserID: "u1", ExternalID: "tg-1"},
			ownerUser:   strPtr("u2"),
			ownerExt:    strPtr("tg-2"),
			wantAllowed: false,
		},
		{
			name:        "несовпадающий userId, externalId не заполнен — DENY",
			caller:      &Caller{UserID: "u1"},
			ownerUser:   strPtr("u2"),
			wantAllowed: false,
		},
		{
			name:        "пустой userId вызывающего не матчится с пустым владельцем",
			caller:      &Caller{ExternalID: "tg-1"},
			ownerUser:   strPtr(""),
			ownerExt:    strPtr("tg-2"),
			wantAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.caller, tt.ownerUser, tt.ownerExt)
			if got.Allowed != tt.wantAllowed {
				t.Fatalf("Decide: Allowed = %v, ожидалось %v", got.Allowed, tt.wantAllowed)
			}
			if got.Allowed && got.Reason != tt.wantReason {
				t.Errorf("Decide: Reason = %q, ожидалось %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestDecisionPermissive(t *testing.T) {
	tests := []struct {
		name string
		d    Decision
		want bool
	}{
		{name: "admin — не пермиссивный", d: Decision{Allowed: true, Reason: ReasonAdmin}, want: false},
		{name: "matched — не пермиссивный", d: Decision{Allowed: true, Reason: ReasonMatched}, want: false},
		{name: "анонимный — пермиссивный", d: Decision{Allowed: true, Reason: ReasonNoCallerIdentity}, want: true},
		{name: "запись без владельца — пермиссивный", d: Decision{Allowed: true, Reason: ReasonRecordWithoutOwner}, want: true},
		{name: "DENY — не пермиссивный", d: Decision{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Permissive(); got != tt.want {
				t.Errorf("Permissive() = %v, ожидалось %v", got, tt.want)
			}
		})
	}
}
