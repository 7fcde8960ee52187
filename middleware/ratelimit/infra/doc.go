// Package infra contém implementações concretas para os contratos
// definidos no pacote domain.
//
//   - Store: token bucket por chave usando golang.org/x/time/rate, com relógio
//     injetável e limpeza de chaves ociosas
package infra
