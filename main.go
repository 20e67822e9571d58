package main

import "github.com/frahmantamala/tracker-bot/cmd"

func main() {
	cmd.Execute()
}
