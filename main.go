package main

import "github.com/KaramelBytes/gridloom-cli/cmd"

func main() {
	cmd.Execute()
}
