// Package application contém os casos de uso (regras de aplicação) para a
// admissão por janela deslizante e para o limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Check(key, now) retorna uma Decision (allow/deny + cota).
package application
