package services

import (
	"fmt"
	"strings"
	"time"
)

const (
	msgMenu      = "¿Qué te gustaría hacer?\n1) Registrar gasto\n2) Consultar historial\n\nEscribí 1 o 2."
	msgMenuRetry = "No entendí. Escribí 1 (Registrar gasto) o 2 (Consultar historial)."
	msgCancelled = "Flujo cancelado. Escribí *hola* para volver al menú."
	msgFailure   = "❌ Tuve un problema procesando tu mensaje. Escribí *hola* para empezar de nuevo."

	msgConfirmRegister  = "¿Querés registrar un gasto? (sí/no)"
	msgRegisterDeclined = "Perfecto, ¡gracias!"
	msgYesNo            = "Respondé *sí* o *no*."
	msgYesNoShort       = "Respondé sí o no."
	msgPickMoment       = "¿El gasto es de *ahora* o de *otro momento*?"
	msgPickMomentRetry  = "Decime: *ahora* o *otro momento*."
	msgAskDate          = "Indicá la *fecha* (AAAA-MM-DD)."
	msgBadDate          = "Formato inválido (AAAA-MM-DD)."
	msgAskTime          = "Indicá la *hora* (HH:MM 24h)."
	msgBadTime          = "Hora inválida (HH:MM)."
	msgAskAmount        = "Decime *monto y moneda*. Ej: 4500 ARS"
	msgBadAmount        = "No pude leer el monto/moneda. Ej: 4500 ARS"
	msgAskDescription   = "Una *descripción* breve (ej: supermercado coto):"
	msgAskMethod        = "Medio de pago: *efectivo*, *debito*, *credito* o *transferencia*?"
	msgBadMethod        = "Elegí: efectivo / debito / credito / transferencia"
	msgAskAccount       = "Cuenta/alias/últimos 4 (o escribí 'ninguno'):"
	msgAskMerchant      = "Comercio (o escribí 'ninguno'):"
	msgRecorded         = "✅ Gasto registrado (clave %s). ¡Gracias!"
	msgRecordFailed     = "❌ No pude guardar el gasto. No se registró nada; escribí *hola* para intentarlo de nuevo."

	msgQueryFrom      = "¿Desde qué fecha? AAAA-MM-DD"
	msgQueryFromBad   = "Formato inválido. Ej: 2025-08-01"
	msgQueryTo        = "¿Hasta qué fecha? AAAA-MM-DD"
	msgQueryToBad     = "Formato inválido. Ej: 2025-08-31"
	msgQueryMethod    = "Medio de pago (número):\n0) Todos\n1) efectivo\n2) debito\n3) credito\n4) transferencia"
	msgQueryMethodBad = "Elegí 0/1/2/3/4"
	msgQuerySummary   = "Voy a buscar desde %s hasta %s\nMedio: %s\nBanco: %s\n\n¿Confirmo? (sí/no)"
	msgQueryCancelled = "Consulta cancelada. Escribí *hola* para volver al menú."
	msgQueryFailed    = "❌ No pude consultar tus movimientos. Probá de nuevo en un rato."
	msgNoResults      = "No encontré movimientos con esos filtros."

	msgBadIndex     = "Número no válido."
	msgUnknownEntry = "No existe “%s”. ¿Crear? (sí/no)"
	msgCreateOption = "9) Otra (crear nueva)"
	msgAll          = "todos"
)

// timeoutNotice tells the user the previous flow was dropped
func timeoutNotice(window time.Duration) string {
	return fmt.Sprintf("⏱️ Pasaron más de %s sin respuesta. Escribí *hola* para reiniciar.", humanizeWindow(window))
}

func humanizeWindow(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		if n := int(d / time.Minute); n != 1 {
			return fmt.Sprintf("%d minutos", n)
		}
		return "1 minuto"
	}
	return fmt.Sprintf("%d segundos", int(d/time.Second))
}

// catalogMenu renders a numbered menu: 0 for none/all, 1..n for options and
// 9 to create a new entry
func catalogMenu(title, noneLabel string, options []string) string {
	lines := []string{title, "0) " + noneLabel}
	for i, o := range options {
		lines = append(lines, fmt.Sprintf("%d) %s", i+1, o))
	}
	lines = append(lines, msgCreateOption)
	return strings.Join(lines, "\n")
}

// preview shortens text for log lines
func preview(text string) string {
	const max = 40
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "…"
}
