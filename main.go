package main

import "github.com/Aayush9029/apple-mail-exporter/cmd"

func main() {
	cmd.Execute()
}
