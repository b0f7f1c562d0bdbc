package main

import "github.com/KaramelBytes/salesloom/cmd"

func main() {
	cmd.Execute()
}
