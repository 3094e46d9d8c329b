package main

import "github.com/devlink/apiserver/cmd"

func main() {
	cmd.Execute()
}
