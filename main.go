package main

import "github.com/openauditlabs/sentry/cmd"

func main() {
	cmd.Execute()
}
