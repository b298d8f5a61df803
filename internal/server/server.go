package server

import (
	"fmt"

	"github.com/DominicWuest/nodebisect/pkg/bisect"
)

type ServerType int

const (
	HTTP ServerType = iota
)

type Server interface {
	Init(int, *bisect.Bisector) error
}

// NewServer creates a server of the passed type and starts serving the bisector on the passed port
func NewServer(serverType ServerType, port int, bisector *bisect.Bisector) (Server, error) {
	switch serverType {
	case HTTP:
		server := &httpServer{}
		return server, server.Init(port, bisector)
	}
	return nil, fmt.Errorf("%d is not a valid server type", serverType)
}
