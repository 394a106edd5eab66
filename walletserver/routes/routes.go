package routes

import (
	"github.com/gorilla/mux"

	"github.com/obyte-wallet/walletd/walletserver/controllers"
	"github.com/obyte-wallet/walletd/walletserver/middleware"
)

// Register wires WalletController's four operations onto r, unchanged
// from the teacher's route table in shape (create/import/address/sign)
// though address now takes a wallet id off the path; sign reads it from
// the request body.
func Register(r *mux.Router, wc *controllers.WalletController) {
	r.Use(middleware.Logger)
	r.HandleFunc("/api/wallet/create", wc.Create).Methods("POST")
	r.HandleFunc("/api/wallet/import", wc.Import).Methods("POST")
	r.HandleFunc("/api/wallet/{id}/address", wc.Address).Methods("POST")
	r.HandleFunc("/api/wallet/sign", wc.Sign).Methods("POST")
}
