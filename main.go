package main

import "github.com/AvaProtocol/ap-router/cmd"

func main() {
	cmd.Execute()
}
