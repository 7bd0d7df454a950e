package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/tabline/internal/app"
)

func main() {
	fx.New(app.Module, app.EventLogger).Run()
}
