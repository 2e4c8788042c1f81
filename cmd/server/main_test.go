package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurlHostForListenAddr(t *testing.T) {
	tests := []struct {
		name       string
		listenAddr string
		want       string
	}{
		{"port only", ":8080", "localhost:8080"},
		{"ipv4 host and port", "127.0.0.1:8080", "127.0.0.1:8080"},
		{"wildcard ipv4", "0.0.0.0:8080", "localhost:8080"},
		{"wildcard ipv6", "[::]:8080", "localhost:8080"},
		{"ipv6 loopback", "[::1]:8080", "[::1]:8080"},
		{"surrounding whitespace", " localhost:9090 ", "localhost:9090"},
		{"whitespace around port only", "  :7070  ", "localhost:7070"},
		{"empty falls back to default", "", "localhost:8080"},
		{"blank falls back to default", "   ", "localhost:8080"},
		{"no port passes through", "localhost", "localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, curlHostForListenAddr(tt.listenAddr))
		})
	}
}
