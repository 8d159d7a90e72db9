// Command sitegate runs the HTTP service that redirects legacy product pages
// to service pages and serves the admin user API.
package main

import (
	"log"

	"github.com/patric-chuzhbe/sitegate/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		log.Fatal(err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		theApp.Close()
		log.Fatal(err)
	}
}
