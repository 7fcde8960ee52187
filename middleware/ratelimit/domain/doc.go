// Package domain define contratos e tipos de domínio da cota por rota.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
