// Package domain define os tipos e contratos da lista negra de IPs: veredito,
// estado derivado por identificador, política (limiares e TTLs), o esquema de
// chaves e o contrato do store chave-valor com expiração.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
