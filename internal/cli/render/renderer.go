package render

import "github.com/trebuchet-org/lend-deploy/internal/usecase"

// Renderer renders a use case result
type Renderer[T any] interface {
	Render(result T) error
}

var _ Renderer[*usecase.InitProjectResult] = (*InitRenderer)(nil)
