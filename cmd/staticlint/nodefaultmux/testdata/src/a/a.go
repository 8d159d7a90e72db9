package a

import (
	"net/http"
	nethttp "net/http"
)

func handler(res http.ResponseWriter, req *http.Request) {}

func register() {
	http.HandleFunc("/products/", handler) // want "avoid registering handlers on http.DefaultServeMux"
	http.Handle("/services/", http.HandlerFunc(handler)) // want "avoid registering handlers on http.DefaultServeMux"
	nethttp.HandleFunc("/ping", handler) // want "avoid registering handlers on http.DefaultServeMux"

	mux := http.NewServeMux()
	mux.HandleFunc("/products/", handler)
	mux.Handle("/services/", http.HandlerFunc(handler))
}
