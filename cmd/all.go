package cmd

import (
	_ "fleet-keeper/cmd/fleet"
	_ "fleet-keeper/cmd/root"
	_ "fleet-keeper/cmd/server"
)
