package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/MR-JLTC/tutorchat/internal/app"
	"github.com/MR-JLTC/tutorchat/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx.New(
		app.Module(app.Params{SessionName: sessionName}),
		fx.NopLogger,
	).Run()
}
