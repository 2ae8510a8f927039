package main

import "github.com/octobot-dev/octobot/cmd"

func main() {
	cmd.Execute()
}
