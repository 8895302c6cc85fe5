/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/emlakhub/apiserver/cmd"

func main() {
	cmd.Execute()
}
