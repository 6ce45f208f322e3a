package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wasend/internal/core"
)

func main() {
	var (
		cfgPath      string
		contactsPath string
		modeFlag     string
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.StringVar(&contactsPath, "contacts", "", "path to contacts csv (Name,Phone,Message)")
	flag.StringVar(&modeFlag, "mode", "both", "run mode: send, monitor or both")
	flag.Parse()

	mode, err := core.ParseMode(modeFlag)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := core.NewApp(core.Options{
		ConfigPath:   cfgPath,
		ContactsPath: contactsPath,
		Mode:         mode,
	})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
