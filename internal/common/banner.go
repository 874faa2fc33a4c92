package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner.
func PrintBanner(config *Config, role string, logger arbor.ILogger) {
	version := GetVersion()
	build := GetBuild()

	serviceURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)

	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")
	b.PrintTopLine()
	b.PrintCenteredText("MERIDIAN")
	b.PrintCenteredText("Distributed Job Orchestration Engine")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", version, 15)
	b.PrintKeyValue("Build", build, 15)
	b.PrintKeyValue("Role", role, 15)
	b.PrintKeyValue("Environment", config.Environment, 15)
	if role == "orchestrator" {
		b.PrintKeyValue("Service URL", serviceURL, 15)
	}
	b.PrintKeyValue("Store", config.Store.Type, 15)
	b.PrintKeyValue("Queue", config.Queue.Type, 15)
	b.PrintBottomLine()
	fmt.Printf("\n")

	logger.Info().
		Str("version", version).
		Str("build", build).
		Str("role", role).
		Str("environment", config.Environment).
		Str("service_url", serviceURL).
		Msg("application started")

	logger.Info().
		Str("store_type", config.Store.Type).
		Str("queue_type", config.Queue.Type).
		Str("storage_root", config.Storage.Root).
		Msg("configuration loaded")
}

// PrintShutdownBanner displays the application shutdown banner.
func PrintShutdownBanner(role string, logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(42)

	b.PrintTopLine()
	b.PrintCenteredText("SHUTTING DOWN")
	b.PrintCenteredText("MERIDIAN")
	b.PrintBottomLine()
	fmt.Println()

	logger.Info().Str("role", role).Msg("application shutting down")
}

