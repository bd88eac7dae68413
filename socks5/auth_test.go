package socks5

import (
	"bytes"
	"testing"
)

func TestParseMethods(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    []byte
		wantErr bool
	}{
		{"single", []byte{1, MethodNoAuth}, []byte{MethodNoAuth}, false},
		{"multi", []byte{2, MethodNoAuth, MethodUserPass}, []byte{MethodNoAuth, MethodUserPass}, false},
		{"truncated count", []byte{}, nil, true},
		{"truncated methods", []byte{2, MethodNoAuth}, nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMethods(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("err: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseUserPass(t *testing.T) {
	tests := []struct {
		name     string
		in       []byte
		wantUser string
		wantPass string
		wantErr  bool
	}{
		{"ok", []byte{userAuthVersion, 3, 'f', 'o', 'o', 3, 'b', 'a', 'r'}, "foo", "bar", false},
		{"bad version", []byte{9, 0, 0}, "", "", true},
		{"truncated username", []byte{userAuthVersion, 3, 'f', 'o'}, "", "", true},
		{"truncated password", []byte{userAuthVersion, 3, 'f', 'o', 'o', 3, 'b', 'a'}, "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			user, pass, err := parseUserPass(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("err: %v", err)
			}
			if user != tc.wantUser || pass != tc.wantPass {
				t.Fatalf("got (%q, %q), want (%q, %q)", user, pass, tc.wantUser, tc.wantPass)
			}
		})
	}
}

func TestSelectMethod(t *testing.T) {
	tests := []struct {
		name            string
		proposed        []byte
		credsConfigured bool
		addrAuthed      bool
		want            uint8
	}{
		{"no creds configured picks no-auth", []byte{MethodNoAuth}, false, false, MethodNoAuth},
		{"creds configured rejects bare no-auth", []byte{MethodNoAuth}, true, false, MethodNoAcceptable},
		{"creds configured but address already authed", []byte{MethodNoAuth}, true, true, MethodNoAuth},
		{"creds configured picks userpass", []byte{MethodUserPass}, true, false, MethodUserPass},
		{"client order decides: no-auth offered first and usable", []byte{MethodNoAuth, MethodUserPass}, false, false, MethodNoAuth},
		{"client order decides: userpass offered first", []byte{MethodUserPass, MethodNoAuth}, true, false, MethodUserPass},
		{"nothing usable", []byte{MethodGSSAPI}, true, false, MethodNoAcceptable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := selectMethod(tc.proposed, tc.credsConfigured, tc.addrAuthed)
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}
