package main

import "github.com/JonMunkholm/olive/cmd"

func main() {
	cmd.Execute()
}
