package main

import "github.com/photoli93/Projet-7/cmd"

func main() {
	cmd.Execute()
}
